// Package i18n 提供国际化支持
// 负责管理错误码对应的多语言文本
package i18n

import (
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/racenotes/internal/logger"
)

// 支持的语言
const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	// 语言包存储
	translations = map[string]map[string]string{
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"not_found":             "资源未找到",
			"service_unavailable":   "服务不可用",

			"validation_failed": "数据校验失败",
			"invalid_enum":      "取值不在允许范围内",
			"empty_body":        "笔记内容不能为空",

			"not_connected":       "未连接远程数据库",
			"offline_mode":        "离线模式运行中",
			"database_connection": "数据库连接错误",
			"database_query":      "数据库查询错误",

			"file_not_found":             "文件未找到",
			"file_too_large":             "文件大小超限",
			"upload_failed":              "文件上传失败",
			"public_url_unavailable":     "无法获取文件公开地址",
			"storage_unavailable":        "对象存储不可用",
			"storage_provider_not_found": "对象存储提供商不支持",
			"storage_config_invalid":     "对象存储配置无效",

			"session_resolution": "无法解析或创建赛段",
			"track_resolution":   "无法解析或创建赛道",
			"series_resolution":  "无法解析或创建系列赛",
			"note_insert":        "笔记写入失败",
			"record_create":      "记录创建失败",

			"partial_write": "笔记已保存, 部分附加数据写入失败",

			"cache_unavailable":      "离线缓存不可用",
			"cache_corrupted":        "离线缓存数据损坏",
			"outbox_entry_not_found": "待同步记录不存在",
			"config_invalid":         "配置无效",
			"unknown_error":          "未知错误",
		},
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"not_found":             "Resource Not Found",
			"service_unavailable":   "Service Unavailable",

			"validation_failed": "Validation Failed",
			"invalid_enum":      "Value Not Allowed",
			"empty_body":        "Note Body Must Not Be Empty",

			"not_connected":       "Not Connected To Remote Database",
			"offline_mode":        "Running In Offline Mode",
			"database_connection": "Database Connection Error",
			"database_query":      "Database Query Error",

			"file_not_found":             "File Not Found",
			"file_too_large":             "File Too Large",
			"upload_failed":              "Upload Failed",
			"public_url_unavailable":     "Public URL Unavailable",
			"storage_unavailable":        "Object Storage Unavailable",
			"storage_provider_not_found": "Storage Provider Not Supported",
			"storage_config_invalid":     "Storage Config Invalid",

			"session_resolution": "Failed To Resolve Session",
			"track_resolution":   "Failed To Resolve Track",
			"series_resolution":  "Failed To Resolve Series",
			"note_insert":        "Failed To Insert Note",
			"record_create":      "Failed To Create Record",

			"partial_write": "Note Saved With Incomplete Attachments",

			"cache_unavailable":      "Offline Cache Unavailable",
			"cache_corrupted":        "Offline Cache Corrupted",
			"outbox_entry_not_found": "Outbox Entry Not Found",
			"config_invalid":         "Invalid Configuration",
			"unknown_error":          "Unknown Error",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	mu          sync.RWMutex
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangEnUS,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 初始化翻译器
func (i *I18n) initTranslators() {
	enUS := en_US.New()
	zhCN := zh.New()
	uni := ut.New(enUS, enUS, zhCN)

	langMappings := map[string]string{
		LangEnUS: "en_US",
		LangZhCN: "zh",
	}

	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("[i18n] 初始化翻译器失败: %s (locale: %s)", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
	}

	logger.Debugf("[i18n] 翻译器初始化完成, 共 %d 种语言", len(i.translators))
}

// Translate 根据键和语言获取翻译
// 指定语言缺失时回退到默认语言, 仍缺失时返回键本身
func (i *I18n) Translate(key, lang string) string {
	i.mu.RLock()
	defaultLang := i.defaultLang
	i.mu.RUnlock()

	if _, ok := i.translators[lang]; !ok {
		lang = defaultLang
	}

	if translation, found := translations[lang][key]; found {
		return translation
	}
	if lang != defaultLang {
		if translation, found := translations[defaultLang][key]; found {
			return translation
		}
	}

	logger.Warnf("[i18n] 未找到翻译: %s, 语言: %s", key, lang)
	return key
}

// SetDefaultLanguage 设置默认语言, 不支持的语言会被忽略
func (i *I18n) SetDefaultLanguage(lang string) {
	if !i.IsSupportedLanguage(lang) {
		logger.Warnf("[i18n] 不支持的语言 %s, 保持默认语言 %s", lang, i.GetDefaultLanguage())
		return
	}
	i.mu.Lock()
	i.defaultLang = lang
	i.mu.Unlock()
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}
