package verify

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "verifier")
