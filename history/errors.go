package history

import (
	"errors"
)

// ErrConfiguration marks every error raised while registering a tracked model.
var ErrConfiguration = errors.New("history configuration error")

// ErrPersistence marks every error raised while writing history rows.
var ErrPersistence = errors.New("history persistence error")

var (
	// ErrNilModel is returned when Track is called without a tracked model.
	ErrNilModel = errors.New("tracked model must not be nil")

	// ErrPrefixOrSuffixRequired is returned when both prefix and suffix are empty.
	ErrPrefixOrSuffixRequired = errors.New("prefix or suffix must be informed in options")

	// ErrUnknownHook is returned when a requested hook has no event kind.
	ErrUnknownHook = errors.New("version type not found for hook")

	// ErrMissingUserModel is returned when no acting-user model was configured.
	ErrMissingUserModel = errors.New("user model must be configured")

	// ErrMissingUserFunc is returned when no acting-user resolver was configured.
	ErrMissingUserFunc = errors.New("user func must be configured")

	// ErrNoPrimaryKey is returned when the tracked model declares no primary key.
	ErrNoPrimaryKey = errors.New("tracked model declares no primary key")

	// ErrPrimaryKeyExcluded is returned when a primary key field is excluded from history.
	ErrPrimaryKeyExcluded = errors.New("primary key fields must not be excluded")

	// ErrFieldNameCollision is returned when a mirrored field has the name of a provenance field.
	ErrFieldNameCollision = errors.New("tracked field collides with a provenance field")

	// ErrDefiningHistoryModelFailed is returned when the session refuses the history model definition.
	ErrDefiningHistoryModelFailed = errors.New("defining history model failed")

	// ErrNilSession is returned when neither the tracked model nor the options provide a session.
	ErrNilSession = errors.New("session must not be nil")

	// ErrPersistingHistoryFailed is returned when the bulk insert of history rows fails.
	ErrPersistingHistoryFailed = errors.New("persisting history rows failed")

	// ErrInstanceRequired is returned when an instance version query gets no instance.
	ErrInstanceRequired = errors.New("instance must not be nil")

	// ErrUnsupportedPayload is returned when a hook payload cannot be turned into records.
	ErrUnsupportedPayload = errors.New("unsupported hook payload")
)

func configurationError(errs ...error) error {
	return errors.Join(append([]error{ErrConfiguration}, errs...)...)
}

func persistenceError(errs ...error) error {
	return errors.Join(append([]error{ErrPersistence, ErrPersistingHistoryFailed}, errs...)...)
}
