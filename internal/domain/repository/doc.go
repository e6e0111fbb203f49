// Package repository declara los contratos de persistencia del núcleo:
// usuarios, identidades (access tokens y claves HMAC) y remember tokens.
//
// Hay dos implementaciones, store/memory y store/pg, y ambas pasan los mismos
// tests de contrato. Todos los métodos reciben context.Context primero y
// devuelven los errores centinela de errors.go. Los secretos revocables se
// guardan hasheados, nunca en claro.
package repository
