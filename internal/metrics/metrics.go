// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KeysIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneypot_registration_keys_issued_total",
		Help: "Registration key pairs handed out",
	})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneypot_registrations_total",
		Help: "Pot secret registrations by chain and outcome",
	}, []string{"chain", "result"})

	AttemptsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneypot_attempts_recorded_total",
		Help: "Attempts bridged in from the ledger",
	})

	ChallengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneypot_challenges_issued_total",
		Help: "Challenge set requests by outcome",
	}, []string{"result"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneypot_verifications_total",
		Help: "Verification calls by outcome (won, lost, expired, error)",
	}, []string{"result"})

	ChallengeSolveTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moneypot_challenge_solve_seconds",
		Help:    "Time between challenge issuance and verification",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	LedgerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moneypot_ledger_events_total",
		Help: "Ledger events consumed by kind and outcome",
	}, []string{"kind", "result"})
)
