package gbdt

import (
	"github.com/ethpandaops/laptime/pkg/regressor"
)

func init() {
	// Register the gbdt regressor factory
	regressor.Register(Kind,
		func(params []byte) (regressor.Regressor, error) {
			p, err := ParseParams(params)
			if err != nil {
				return nil, err
			}

			return New(p)
		},
		func(state []byte) (regressor.Regressor, error) {
			return Restore(state)
		},
	)
}
