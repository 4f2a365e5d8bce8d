// Package logger provee un logger Zap singleton con scoping por contexto.
//
// Inicialización (una vez en main):
//
//	logger.Init(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
//	defer logger.Sync()
//
// En handlers/servicios (con contexto):
//
//	log := logger.From(ctx)
//	log.Info("credential registered", logger.UserID(userID))
//
// Sin contexto (fallback al singleton):
//
//	logger.L().Info("server started")
package logger
