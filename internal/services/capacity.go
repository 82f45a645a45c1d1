package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
)

// CheckCapacity проверяет лимит одновременных участников.
// Уже активный участник проходит всегда, иначе переподключение упиралось бы в лимит.
func CheckCapacity(room *models.Room, participantID uuid.UUID, activeParticipantIDs []uuid.UUID) error {
	if room.MaxParticipants == nil {
		return nil
	}

	seen := make(map[uuid.UUID]struct{}, len(activeParticipantIDs))
	for _, id := range activeParticipantIDs {
		if id == participantID {
			return nil
		}
		seen[id] = struct{}{}
	}

	if len(seen) >= *room.MaxParticipants {
		return &Error{
			Code:    CodeLimitReached,
			Message: fmt.Sprintf("room allows at most %d participants", *room.MaxParticipants),
		}
	}
	return nil
}
