// Package application contém os casos de uso em torno das barreiras.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(key) retorna uma Decision (allow/deny + retry-after) e
// Coordinator.Update busca os datasets cuja barreira libera.
package application
