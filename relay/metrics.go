package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updateReceivedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "courier_updates_received",
	Help: "Number of updates pulled from the Bot API",
})

var updateHandledCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_updates_handled",
	Help: "Number of updates dispatched, by handler",
}, []string{"handler"})

var updateErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "courier_update_errors",
	Help: "Number of updates whose handling panicked",
})

var pollErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "courier_poll_errors",
	Help: "Number of failed getUpdates polls",
})

var relayedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_messages_relayed",
	Help: "Number of user messages forwarded to the staff chat, by kind",
}, []string{"kind"})

var relayErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "courier_relay_errors",
	Help: "Number of forward or copy attempts that failed",
})

var rejectedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_messages_rejected",
	Help: "Number of user messages dropped before forwarding, by reason",
}, []string{"reason"})

var adminCommandCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "courier_admin_commands",
	Help: "Number of admin commands handled, by command",
}, []string{"command"})

var adminReplyCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "courier_admin_replies",
	Help: "Number of staff replies relayed back to users",
})

var notifyErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "courier_notify_errors",
	Help: "Number of failed direct notifications to users",
})

var mutesExpiredCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "courier_mutes_expired",
	Help: "Number of mutes evicted by the expiry sweeper",
})

var sweepErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "courier_sweep_errors",
	Help: "Number of sweep cycles that failed",
})
