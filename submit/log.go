package submit

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "submit")
