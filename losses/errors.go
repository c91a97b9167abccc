package losses

import "errors"

var (
	// ErrUnknownLossFunc indicates a loss_func value the factory does not
	// recognise.
	ErrUnknownLossFunc = errors.New("losses: loss_func not valid")
	// ErrThresholdRequired indicates an npixel loss term was enabled
	// without a positive adc threshold configured for the final pruning
	// layer.
	ErrThresholdRequired = errors.New("losses: need an adc threshold set and >0 for the final pruning layer in order to use npixel losses")
	// ErrChamferUnsupported indicates the chamfer point-set loss was
	// selected; its gradient path is known broken, so construction refuses
	// it.
	ErrChamferUnsupported = errors.New("losses: chamfer loss is not supported, gradients do not propagate through the point-set distance")
)
