package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsCollector struct {
	purchaseSuccess  *prometheus.CounterVec
	purchaseFailed   *prometheus.CounterVec
	purchasePrice    *prometheus.HistogramVec
	otpDelivered     *prometheus.CounterVec
	otpTimeout       *prometheus.CounterVec
	otpWaitDuration  *prometheus.HistogramVec
	depositResolved  *prometheus.CounterVec
	referralsCredit  prometheus.Counter
	pointsRefunded   prometheus.Counter
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		purchaseSuccess: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpbay_purchase_success_total",
				Help: "Total number of successful number purchases",
			},
			[]string{"country"},
		),
		purchaseFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpbay_purchase_failed_total",
				Help: "Total number of failed number purchases",
			},
			[]string{"country", "reason"},
		),
		purchasePrice: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otpbay_purchase_price_points",
				Help:    "Price distribution of purchases in points",
				Buckets: prometheus.LinearBuckets(0, 5, 20),
			},
			[]string{"country"},
		),
		otpDelivered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpbay_otp_delivered_total",
				Help: "Total number of OTP codes delivered to buyers",
			},
			[]string{"country"},
		),
		otpTimeout: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpbay_otp_timeout_total",
				Help: "Total number of OTP polls that exhausted their attempt budget",
			},
			[]string{"country"},
		),
		otpWaitDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otpbay_otp_wait_seconds",
				Help:    "Time from purchase to OTP delivery",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"country"},
		),
		depositResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpbay_deposit_resolved_total",
				Help: "Total number of resolved deposit claims",
			},
			[]string{"decision"},
		),
		referralsCredit: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "otpbay_referrals_credited_total",
				Help: "Total number of referral bonuses credited",
			},
		),
		pointsRefunded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "otpbay_points_refunded_total",
				Help: "Total points refunded by purchase compensation",
			},
		),
	}
}

func (m *MetricsCollector) IncrementPurchaseSuccess(country string) {
	m.purchaseSuccess.WithLabelValues(country).Inc()
}

func (m *MetricsCollector) IncrementPurchaseFailed(country, reason string) {
	m.purchaseFailed.WithLabelValues(country, reason).Inc()
}

func (m *MetricsCollector) RecordPurchasePrice(country string, price int64) {
	m.purchasePrice.WithLabelValues(country).Observe(float64(price))
}

func (m *MetricsCollector) IncrementOtpDelivered(country string) {
	m.otpDelivered.WithLabelValues(country).Inc()
}

func (m *MetricsCollector) IncrementOtpTimeout(country string) {
	m.otpTimeout.WithLabelValues(country).Inc()
}

func (m *MetricsCollector) RecordOtpWait(country string, seconds float64) {
	m.otpWaitDuration.WithLabelValues(country).Observe(seconds)
}

func (m *MetricsCollector) IncrementDepositResolved(approved bool) {
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	m.depositResolved.WithLabelValues(decision).Inc()
}

func (m *MetricsCollector) IncrementReferralCredited() {
	m.referralsCredit.Inc()
}

func (m *MetricsCollector) AddPointsRefunded(points int64) {
	m.pointsRefunded.Add(float64(points))
}
