package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/wodnrP/accounts-service/pkg/kafka"

	"github.com/wodnrP/accounts-service/internal/domain"
)

// Kafka topic constants for account domain events.
const (
	TopicUserRegistered = "accounts.user.registered"
	TopicUserUpdated    = "accounts.user.updated"
	TopicUserDeleted    = "accounts.user.deleted"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAccountsService = "accounts-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
}

// UserUpdatedData is the payload for a user.updated event. ChangedFields
// names the profile fields the update actually touched.
type UserUpdatedData struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Nickname      string   `json:"nickname,omitempty"`
	ProfileImage  string   `json:"profile_image,omitempty"`
	ChangedFields []string `json:"changed_fields"`
}

// UserDeletedData is the payload for a user.deleted event.
type UserDeletedData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Producer publishes account domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the accounts service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:       user.ID,
		Username: user.Username,
		Nickname: user.Nickname,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceAccountsService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return nil
}

// PublishUserUpdated publishes a user.updated event.
func (p *Producer) PublishUserUpdated(ctx context.Context, user *domain.User, changedFields []string) error {
	data := UserUpdatedData{
		ID:            user.ID,
		Username:      user.Username,
		Nickname:      user.Nickname,
		ProfileImage:  user.ProfileImage,
		ChangedFields: changedFields,
	}

	event, err := pkgkafka.NewEvent(TopicUserUpdated, user.ID, AggregateTypeUser, SourceAccountsService, data)
	if err != nil {
		return fmt.Errorf("create user.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserUpdated, event); err != nil {
		return fmt.Errorf("publish user.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.updated event",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return nil
}

// PublishUserDeleted publishes a user.deleted event.
func (p *Producer) PublishUserDeleted(ctx context.Context, user *domain.User) error {
	data := UserDeletedData{
		ID:       user.ID,
		Username: user.Username,
	}

	event, err := pkgkafka.NewEvent(TopicUserDeleted, user.ID, AggregateTypeUser, SourceAccountsService, data)
	if err != nil {
		return fmt.Errorf("create user.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserDeleted, event); err != nil {
		return fmt.Errorf("publish user.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.deleted event",
		slog.String("user_id", user.ID),
	)

	return nil
}
