package snapshot

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "snapshot")
