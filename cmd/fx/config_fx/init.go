package config_fx

import (
	"go.uber.org/fx"

	"github.com/Pabby01/studIQ-sub001/internal/config"
)

var Module = fx.Provide(config.Load)
