package internal

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the logger used when none is given to [NewServer].
// level is a logrus level name, empty means info.
func NewLogger(out io.Writer, level string) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level == "" {
		return l, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)
	return l, nil
}
