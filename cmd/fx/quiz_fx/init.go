package quiz_fx

import (
	"go.uber.org/fx"

	"github.com/Pabby01/studIQ-sub001/internal/services"
)

var Module = fx.Provide(services.NewQuizService)
