package util

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	"github.com/cordon-dev/cordon/model"
)

type ValidationUtil struct {
	validate *validator.Validate
}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{validate: validator.New()}
}

func (v *ValidationUtil) ValidateItemAdd(req *model.ItemAddReq) error {
	if err := v.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	return nil
}

func (v *ValidationUtil) ValidateItemModify(req *model.ItemModifyReq) error {
	if err := v.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", cordon_errors.ErrInvalidItemData, err)
	}
	return nil
}

func (v *ValidationUtil) ValidateRelAdd(req *model.RelAddReq) error {
	if err := v.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", cordon_errors.ErrInvalidRelData, err)
	}
	if req.FromID == req.ToID {
		return cordon_errors.ErrRelationSelf
	}
	if req.Validity != nil && req.Validity.StartTs > req.Validity.EndTs {
		return cordon_errors.ErrInvalidValidity
	}
	return nil
}
