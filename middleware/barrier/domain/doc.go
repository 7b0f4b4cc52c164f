// Package domain define contratos e tipos de domínio das barreiras de execução.
//
// Uma barreira decide, no momento da chamada, se uma operação periódica ou sob
// demanda (ex: polling de um provedor remoto) pode rodar agora. O chamador
// consulta Check antes de tentar e informa o resultado com Success ou Fail.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
