package database

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator 返回注册了领域校验规则的校验器单例
//   - notblank: 去除空白后非空
//   - track_type / session_type / media_type / note_category: 取值必须属于对应枚举
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("track_type", enumRule(ParseTrackType))
		_ = v.RegisterValidation("session_type", enumRule(ParseSessionType))
		_ = v.RegisterValidation("media_type", enumRule(ParseMediaType))
		_ = v.RegisterValidation("note_category", enumRule(ParseNoteCategory))
		validate = v
	})
	return validate
}

func enumRule[T ~string](parse func(string) (T, bool)) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, ok := parse(fl.Field().String())
		return ok
	}
}

// ValidateStruct 校验结构体, 失败时返回 ErrValidation 应用错误
// 详细信息列出所有不合法的字段
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return apperrors.Wrap(apperrors.ErrValidation, err)
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fe.Field()+": "+fe.Tag()+"="+fe.Param())
		} else {
			parts = append(parts, fe.Field()+": "+fe.Tag())
		}
	}
	return apperrors.Newf(apperrors.ErrValidation, "%s", strings.Join(parts, "; "))
}
