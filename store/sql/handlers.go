package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func oauthClientHandlers() repository.ModelHandlers[*oauthClientRecord] {
	return repository.ModelHandlers[*oauthClientRecord]{
		NewRecord: func() *oauthClientRecord {
			return &oauthClientRecord{}
		},
		GetID: func(record *oauthClientRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *oauthClientRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *oauthClientRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func accessTokenHandlers() repository.ModelHandlers[*accessTokenRecord] {
	return repository.ModelHandlers[*accessTokenRecord]{
		NewRecord: func() *accessTokenRecord {
			return &accessTokenRecord{}
		},
		GetID: func(record *accessTokenRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *accessTokenRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *accessTokenRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func refreshTokenHandlers() repository.ModelHandlers[*refreshTokenRecord] {
	return repository.ModelHandlers[*refreshTokenRecord]{
		NewRecord: func() *refreshTokenRecord {
			return &refreshTokenRecord{}
		},
		GetID: func(record *refreshTokenRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *refreshTokenRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *refreshTokenRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
