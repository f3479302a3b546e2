package controller

import "github.com/cordon-dev/cordon/service"

type Controllers struct {
	Item     *ItemController
	Rel      *RelController
	Passport *PassportController
}

func InitializeControllers(services *service.Services) *Controllers {
	return &Controllers{
		Item:     NewItemController(services.Item),
		Rel:      NewRelController(services.Rel),
		Passport: NewPassportController(services.Token),
	}
}
