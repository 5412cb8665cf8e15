package artifacts

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "artifacts")
