package handler

import (
	"time"

	"github.com/msomdec/people-registry/internal/domain"
)

// OwnerDTO is the public view of the user who registered a person.
type OwnerDTO struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
}

// PersonDTO is the JSON representation of a person.
type PersonDTO struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Surname          string    `json:"surname"`
	Description      string    `json:"description"`
	LastSeenLocation string    `json:"lastSeenLocation"`
	IsWoman          bool      `json:"isWoman"`
	ImageURL         string    `json:"imageUrl,omitempty"`
	Owner            *OwnerDTO `json:"owner,omitempty"`
	Version          int       `json:"version"`
	CreatedAt        string    `json:"createdAt"`
	UpdatedAt        string    `json:"updatedAt"`
}

func toPersonDTO(p *domain.Person) PersonDTO {
	dto := PersonDTO{
		ID:               p.ID,
		Name:             p.Name,
		Surname:          p.Surname,
		Description:      p.Description,
		LastSeenLocation: p.LastSeenLocation,
		IsWoman:          p.IsWoman,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Image != "" {
		dto.ImageURL = "/images/" + p.Image
	}
	if p.Owner != nil {
		dto.Owner = &OwnerDTO{ID: p.Owner.ID, DisplayName: p.Owner.DisplayName}
	}
	return dto
}

func toPersonDTOs(people []domain.Person) []PersonDTO {
	dtos := make([]PersonDTO, len(people))
	for i := range people {
		dtos[i] = toPersonDTO(&people[i])
	}
	return dtos
}
