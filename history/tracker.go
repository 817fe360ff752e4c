package history

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Tracker is the result of registering a model for history tracking.
// It holds the derived history model and offers the version queries.
type Tracker struct {
	model          Model
	historyModel   Model
	historySession Session
	sameSession    bool
	names          Names
	fields         []FieldDefinition
	snapshotFields []string
	primaryKeys    []string
	userKey        string
	config         Config
	now            func() time.Time
}

// Track derives a history model for model, defines it on the history session and installs
// the lifecycle hooks that write history rows.
//
// Calling Track twice for the same model and session fails with the host's duplicate model error
// joined with ErrConfiguration.
func Track(ctx context.Context, model Model, options ...Option) (*Tracker, error) {
	if model == nil {
		return nil, configurationError(ErrNilModel)
	}

	config := DefaultConfig()
	for _, option := range options {
		if err := option(&config); err != nil {
			return nil, err
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	session := config.session
	if session == nil {
		session = model.Session()
	}

	if session == nil {
		return nil, configurationError(ErrNilSession)
	}

	primaryKeys := model.PrimaryKeys()
	if len(primaryKeys) == 0 && !config.unscopedVersions {
		return nil, configurationError(fmt.Errorf("%w: %s", ErrNoPrimaryKey, model.Name()))
	}

	for _, key := range primaryKeys {
		if slices.Contains(config.exclude, key) {
			return nil, configurationError(fmt.Errorf("%w: %s", ErrPrimaryKeyExcluded, key))
		}
	}

	names, err := ResolveNames(NamingInput{
		ModelName:        model.Name(),
		TableName:        model.TableName(),
		Prefix:           config.prefix,
		Suffix:           config.suffix,
		AttributePrefix:  config.attributePrefix,
		TableUnderscored: config.tableUnderscored,
		Underscored:      config.underscored,
	})
	if err != nil {
		return nil, err
	}

	mirrored := MirrorFields(model.Fields(), config.facets, config.exclude)

	fields, err := BuildHistoryFields(mirrored, names, userIDTypeOf(config.userModel))
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		model:          model,
		historySession: session,
		sameSession:    session == model.Session(),
		names:          names,
		fields:         fields,
		snapshotFields: FieldNames(mirrored),
		primaryKeys:    slices.Clone(primaryKeys),
		userKey:        userKeyOf(config.userModel),
		config:         config,
		now:            time.Now,
	}

	historyModel, err := t.defineHistoryModel(ctx)
	if err != nil {
		t.logError(ctx, logMsgDefineFailed, err, logAttrModel, model.Name(), logAttrHistoryModel, names.Model)
		return nil, err
	}

	t.historyModel = historyModel

	if err := t.installHooks(ctx); err != nil {
		return nil, err
	}

	if len(primaryKeys) == 0 {
		t.logWarn(ctx, logMsgUnscopedVersions, logAttrModel, model.Name())
	}

	t.logOperation(ctx, logMsgModelTracked,
		logAttrModel, model.Name(),
		logAttrHistoryModel, names.Model,
		logAttrHistoryTable, names.Table,
		logAttrFieldCount, len(fields),
	)

	return t, nil
}

// Model returns the tracked model.
func (t *Tracker) Model() Model {
	return t.model
}

// HistoryModel returns the derived history model.
func (t *Tracker) HistoryModel() Model {
	return t.historyModel
}

// Names returns the resolved history names.
func (t *Tracker) Names() Names {
	return t.names
}

// Fields returns a copy of the history model's field definitions.
func (t *Tracker) Fields() []FieldDefinition {
	return slices.Clone(t.fields)
}

// SameSession reports whether history rows live in the tracked model's session.
func (t *Tracker) SameSession() bool {
	return t.sameSession
}

// userKeyOf returns the field that identifies an acting user.
func userKeyOf(userModel Model) string {
	keys := userModel.PrimaryKeys()
	if len(keys) == 0 {
		return "id"
	}

	return keys[0]
}
