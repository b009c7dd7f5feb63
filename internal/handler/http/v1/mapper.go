package v1

import (
	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/openresq/emergency_dispatch/internal/service"
)

// DTOToCreateInput converts the creation DTO into the engine's input.
func DTOToCreateInput(dto CreateAlertRequest) service.CreateAlertInput {
	return service.CreateAlertInput{
		ReporterID: dto.ReporterID,
		Message:    dto.Message,
		AudioRef:   dto.AudioRef,
		Latitude:   dto.Latitude,
		Longitude:  dto.Longitude,
	}
}

// DTOToResponderModel converts the registration DTO into the domain model.
func DTOToResponderModel(dto RegisterResponderRequest) *models.Responder {
	return &models.Responder{
		ID:         dto.ID,
		Department: models.Department(dto.Department),
		PushURL:    dto.PushURL,
	}
}

// ModelToAlertResponse converts the domain model into a response DTO.
func ModelToAlertResponse(model *models.Alert) *AlertResponse {
	targeted := model.TargetedResponders
	if targeted == nil {
		targeted = []string{}
	}
	return &AlertResponse{
		ID:                 model.ID,
		ReporterID:         model.ReporterID,
		Message:            model.Message,
		AudioRef:           model.AudioRef,
		Latitude:           model.Latitude,
		Longitude:          model.Longitude,
		Category:           model.Category,
		Status:             string(model.Status),
		AcceptedBy:         model.AcceptedBy,
		RadiusKm:           model.RadiusKm,
		Deadline:           model.Deadline,
		TargetedResponders: targeted,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

// ModelsToAlertResponses converts a slice of models into response DTOs.
func ModelsToAlertResponses(models []*models.Alert) []*AlertResponse {
	responses := make([]*AlertResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToAlertResponse(model)
	}
	return responses
}

// ModelToResponderResponse converts the domain model into a response DTO.
func ModelToResponderResponse(model *models.Responder) *ResponderResponse {
	return &ResponderResponse{
		ID:         model.ID,
		Department: string(model.Department),
		Latitude:   model.Latitude,
		Longitude:  model.Longitude,
		PushURL:    model.PushURL,
		LocatedAt:  model.LocatedAt,
		CreatedAt:  model.CreatedAt,
	}
}
