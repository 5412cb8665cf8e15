package merkle

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "merkle")
