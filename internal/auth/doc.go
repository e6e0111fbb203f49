// Package auth implementa los authenticators (session, bearer tokens, HMAC y JWT)
// y el registry que los resuelve por nombre.
//
// Contrato común:
//
//   - Check verifica credenciales sin efectos (sólo lecturas).
//   - Attempt llama a Check, registra exactamente un LoginAttempt, emite el evento
//     de auditoría y, si tuvo éxito, hace Login.
//   - Las fallas esperadas vuelven como result.Result; los errores de Go quedan para
//     configuración e infraestructura.
//
// El estado por request (usuario actual, token, claims) vive en *Request, nunca en
// el authenticator: las instancias son compartidas entre goroutines.
package auth
