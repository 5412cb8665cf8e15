package prometheus

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// LogrusCollector is a logrus hook counting log entries per level and prefix,
// so warning and error rates from any pipeline stage show up in dashboards.
type LogrusCollector struct {
	counterVec *prometheus.CounterVec
}

var logEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "erde_log_entries_total",
	Help: "Total number of log messages by level and package prefix",
}, []string{"level", "prefix"})

// NewLogrusCollector returns the hook to register on the standard logger.
func NewLogrusCollector() *LogrusCollector {
	return &LogrusCollector{counterVec: logEntries}
}

// Fire is called on every log entry at a supported level.
func (hook *LogrusCollector) Fire(entry *logrus.Entry) error {
	prefix := "global"
	if value, ok := entry.Data["prefix"]; ok {
		prefix, ok = value.(string)
		if !ok {
			return errors.New("prefix is not a string")
		}
	}
	hook.counterVec.WithLabelValues(entry.Level.String(), prefix).Inc()
	return nil
}

// Levels limits the hook to levels worth counting.
func (*LogrusCollector) Levels() []logrus.Level {
	return []logrus.Level{logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel}
}
