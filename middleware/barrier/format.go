package barrier

import (
	"math"
	"strconv"
	"time"
)

// retryAfterSeconds arredonda para cima: Retry-After nunca sugere voltar cedo.
func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

// jsonValue deixa durações e instantes legíveis no JSON de diagnóstico.
func jsonValue(v any) any {
	switch x := v.(type) {
	case time.Duration:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}
