// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request lleva su logger con campos propios
//     (request_id, authenticator, user_id) vía ToContext/From.
//   - Entornos: "dev" consola con colores, "prod" JSON, "test" descarta todo.
//   - Secretos: nunca se loguean passwords, tokens crudos ni validators. Para
//     remember tokens se loguea sólo el selector.
//
// # Uso
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Authenticator("session"))
//	log.Info("login successful", logger.UserID(u.ID))
package logger
