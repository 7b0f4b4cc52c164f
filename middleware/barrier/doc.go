// Package barrier fornece adapters HTTP (net/http) para as barreiras de execução.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decide/report, coordenador de datasets) sem net/http
//   - infra: implementações concretas (barreiras, registry, stats), detalhes de infraestrutura
//   - config: definição das barreiras em YAML
//   - barrier (este pacote): middleware HTTP + extração de chave + diagnóstico
//
// Fluxo no gateway:
//
//   1) Extrai a chave do cliente (IP/header/XFF)
//   2) Reserva a chave: uma tentativa em andamento por vez (429 IN_FLIGHT)
//   3) Chama a camada application para obter a decisão da barreira da chave
//   4) Se negado, responde 429 com Retry-After e X-Barrier-Code
//   5) Se liberado, chama o próximo handler (ex: reverse proxy) e reporta
//      sucesso ou falha conforme o status da resposta, salvo se a resposta
//      foi local (NotForwarded)
//
// Variáveis de ambiente dos binários (cmd/gateway, cmd/poller) controlam o
// comportamento, como BARRIERS_FILE, BARRIER_FAIL_STATUS e POLL_INTERVAL.
package barrier
