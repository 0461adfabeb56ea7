package logger

var defLogger = NewSlog(InfoLevel, false)

// SetLevel sets the level of the package default logger.
func SetLevel(level Level) {
	defLogger.SetLevel(level)
}

// GetLogger returns the package default logger, used by configs that were not given a logger.
func GetLogger() Logger {
	return defLogger
}

// SetLogger replaces the package default logger.
// It only affects configs created after the call.
func SetLogger(l Logger) {
	if l != nil {
		defLogger = l
	}
}
