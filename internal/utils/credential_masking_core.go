package utils

import (
	"go.uber.org/zap/zapcore"

	"github.com/temirov/reposync/internal/gitrepo"
)

type credentialMaskingCore struct {
	zapcore.Core
}

// NewCredentialMaskingCore wraps core so messages and string fields never carry URL-embedded secrets.
func NewCredentialMaskingCore(core zapcore.Core) zapcore.Core {
	if _, alreadyMasking := core.(credentialMaskingCore); alreadyMasking {
		return core
	}
	return credentialMaskingCore{Core: core}
}

func (core credentialMaskingCore) With(fields []zapcore.Field) zapcore.Core {
	return credentialMaskingCore{Core: core.Core.With(maskFields(fields))}
}

func (core credentialMaskingCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if core.Enabled(entry.Level) {
		return checked.AddCore(entry, core)
	}
	return checked
}

func (core credentialMaskingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Message = gitrepo.MaskCredentials(entry.Message)
	return core.Core.Write(entry, maskFields(fields))
}

func maskFields(fields []zapcore.Field) []zapcore.Field {
	masked := make([]zapcore.Field, len(fields))
	for fieldIndex, field := range fields {
		switch field.Type {
		case zapcore.StringType:
			field.String = gitrepo.MaskCredentials(field.String)
		case zapcore.ErrorType:
			if failure, isError := field.Interface.(error); isError && failure != nil {
				if maskedMessage := gitrepo.MaskCredentials(failure.Error()); maskedMessage != failure.Error() {
					field = zapcore.Field{Key: field.Key, Type: zapcore.StringType, String: maskedMessage}
				}
			}
		}
		masked[fieldIndex] = field
	}
	return masked
}
