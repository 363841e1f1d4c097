package logger

import (
	"go.uber.org/zap"

	"github.com/aliskhannn/academy-tube/internal/config"
)

// New builds the process logger for the named binary. Production uses JSON
// output at info level; every other environment uses the development console.
func New(cfg *config.Config, name string) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.Env == "production" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}

	return l.Named(name).With(zap.String("env", cfg.Env)), nil
}
