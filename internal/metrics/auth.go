package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del núcleo de autenticación. Viven en un paquete aparte para que
// auth, validation y http puedan usarlas sin ciclos de import.

var (
	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_auth_attempts_total",
		Help: "Intentos de autenticación por authenticator y resultado",
	}, []string{"authenticator", "result"})

	BreachCheckDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatekeeper_breach_check_duration_seconds",
		Help:    "Latencia de la consulta de passwords filtrados",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"outcome"}) // clean|pwned|error

	RememberRotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_remember_rotations_total",
		Help: "Rotaciones de remember-me token por resultado",
	}, []string{"result"}) // rotated|mismatch|race|expired

	RememberPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_remember_tokens_purged_total",
		Help: "Remember tokens expirados eliminados",
	})
)

// ObserveAttempt incrementa el contador de intentos.
func ObserveAttempt(authenticator string, success bool) {
	res := "failure"
	if success {
		res = "success"
	}
	AuthAttempts.WithLabelValues(authenticator, res).Inc()
}

// ObserveBreachCheck registra la duración de una consulta de brechas.
func ObserveBreachCheck(outcome string, d time.Duration) {
	BreachCheckDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Register registra las métricas en el registry dado (o el default si nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AuthAttempts, BreachCheckDuration, RememberRotations, RememberPurged} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
