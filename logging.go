package puzzle

import (
	"go.uber.org/zap"

	"github.com/barisesen/puzzle-js/internal/obs"
)

// templateLogger tags every log line with the owning template's name,
// so a request-time warning can be correlated back to the template that
// produced it without threading the name through every call site by hand.
type templateLogger struct {
	name string
	log  *obs.Logger
}

func newTemplateLogger(name string, log *obs.Logger) *templateLogger {
	if log == nil {
		log = obs.Nop()
	}
	return &templateLogger{name: name, log: log}
}

func (l *templateLogger) recovered(err error, fragment string) {
	l.log.Recovered(err, zap.String("template", l.name), zap.String("fragment", fragment))
}

func (l *templateLogger) fatal(err error) {
	l.log.Fatal(err, zap.String("template", l.name))
}
