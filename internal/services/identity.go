package services

import "github.com/google/uuid"

// Identity кто входит в комнату: MemberIdentity или AnonymousIdentity.
// Интерфейс закрыт, других реализаций быть не может.
type Identity interface {
	isIdentity()
}

// MemberIdentity аутентифицированный пользователь рабочего пространства
type MemberIdentity struct {
	UserID uuid.UUID
}

// AnonymousIdentity гость; SlugToken пуст при первом входе
type AnonymousIdentity struct {
	DisplayName string
	SlugToken   string
}

func (MemberIdentity) isIdentity()    {}
func (AnonymousIdentity) isIdentity() {}
