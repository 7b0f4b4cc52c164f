// Package infra contém implementações concretas para os contratos definidos
// no pacote domain.
//
// Exemplos:
//   - NoopBarrier, TimeDeltaBarrier, TimeWindowBarrier: as barreiras em si
//   - Registry: barreira por chave, com acesso serializado e limpeza periódica
//   - SlotPool: semáforo simples para limitar buscas simultâneas
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões
package infra
