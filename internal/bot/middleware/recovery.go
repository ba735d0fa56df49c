package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverFromPanic вызывается через defer; fields дополняют запись в логе.
func RecoverFromPanic(fields ...log.Fields) {
	if r := recover(); r != nil {
		entry := log.WithFields(log.Fields{
			"component": "panic_recovery",
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		})
		for _, f := range fields {
			entry = entry.WithFields(f)
		}
		entry.Error("ПАНИКА в обработчике — восстановлено")
	}
}
