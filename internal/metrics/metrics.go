// Package metrics holds the domain Prometheus collectors. HTTP metrics
// live in the middleware package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChallengesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecostep_challenges_started_total",
			Help: "Challenges started, by category",
		},
		[]string{"category"},
	)
	ChallengesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecostep_challenges_completed_total",
			Help: "Challenges completed, by category",
		},
		[]string{"category"},
	)
	PointsAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecostep_points_awarded_total",
			Help: "Points awarded for completed challenges",
		},
	)
	BadgesAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecostep_badges_awarded_total",
			Help: "Badges awarded, by badge name",
		},
		[]string{"badge"},
	)
	EstimatorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecostep_estimator_requests_total",
			Help: "Carbon estimates, by source (remote or fallback)",
		},
		[]string{"operation", "source"},
	)
	PremiumChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecostep_premium_changes_total",
			Help: "Premium entitlement changes, by action and provider",
		},
		[]string{"action", "provider"},
	)
	PushNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecostep_push_notifications_total",
			Help: "Push deliveries, by status",
		},
		[]string{"status"},
	)
	AffiliateClicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecostep_affiliate_clicks_total",
			Help: "Marketplace affiliate clicks, by product category",
		},
		[]string{"category"},
	)
	LeaderboardCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecostep_leaderboard_cache_total",
			Help: "Global leaderboard cache lookups, by result",
		},
		[]string{"result"},
	)
)

// Register adds every domain collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ChallengesStarted,
		ChallengesCompleted,
		PointsAwarded,
		BadgesAwarded,
		EstimatorRequests,
		PremiumChanges,
		PushNotifications,
		AffiliateClicks,
		LeaderboardCache,
	)
}
