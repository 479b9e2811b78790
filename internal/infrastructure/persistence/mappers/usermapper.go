package mappers

import (
	"volt/internal/domain/user"
	"volt/internal/infrastructure/persistence/models"
)

type UserMapper interface {
	ToEntity(model *models.UserModel) *user.User
	ToModel(entity *user.User) *models.UserModel
}

type userMapper struct{}

func NewUserMapper() UserMapper {
	return &userMapper{}
}

func (m *userMapper) ToEntity(model *models.UserModel) *user.User {
	if model == nil {
		return nil
	}
	return &user.User{
		UID:          model.UID,
		Username:     model.Username,
		Email:        model.Email,
		PasswordHash: model.PasswordHash,
		DisplayName:  model.DisplayName,
		Activated:    model.Activated,
		SupportPIN:   model.SupportPIN,
		APIKeyHash:   model.APIKeyHash,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func (m *userMapper) ToModel(entity *user.User) *models.UserModel {
	if entity == nil {
		return nil
	}
	return &models.UserModel{
		UID:          entity.UID,
		Username:     entity.Username,
		Email:        entity.Email,
		PasswordHash: entity.PasswordHash,
		DisplayName:  entity.DisplayName,
		Activated:    entity.Activated,
		SupportPIN:   entity.SupportPIN,
		APIKeyHash:   entity.APIKeyHash,
		CreatedAt:    entity.CreatedAt,
		UpdatedAt:    entity.UpdatedAt,
	}
}
