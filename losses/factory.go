package losses

import (
	"fmt"

	"github.com/larinfill/larinfill/config"
)

// New selects and constructs the configured loss variant from the
// loss_func value. All configuration validation happens here or in the
// variant constructors, before any batch is processed.
func New(conf *config.Config) (Loss, error) {
	switch conf.LossFunc {
	case "PixelWise_L1Loss", "PixelWise_MSELoss", "PixelWise_BCEWithLogitsLoss":
		return NewPixelWise(conf)

	case "GapWise_L1Loss", "GapWise_MSELoss", "GapWise_L1Loss_MSELossPixelWise":
		return NewGapWise(conf)

	case "PlaneWise_L1Loss":
		return NewPlaneWise(conf)

	case "Chamfer":
		if _, err := NewChamfer(conf); err != nil {
			return nil, err
		}
		return nil, ErrChamferUnsupported

	default:
		return nil, fmt.Errorf("%w: loss_func=%q", ErrUnknownLossFunc, conf.LossFunc)
	}
}
