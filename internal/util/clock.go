package util

import "time"

// Now devolve o instante atual em UTC; variável para permitir congelar em testes.
var Now = func() time.Time {
	return time.Now().UTC()
}
