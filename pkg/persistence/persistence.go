package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "persistence")

const (
	// TagName 结构体字段持久化 tag：`persistence:"current_coin"`
	TagName = "persistence"
	// statePrefix 字段级持久化使用的 key 前缀
	statePrefix = "state"
)

// Service 持久化服务接口
type Service interface {
	NewStore(prefix, id, tag string) Store
}

// Store 存储接口
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
}

// ErrNotExists 表示数据不存在
var ErrNotExists = errors.New("persistence data not exists")

// JSONFileService 基于 JSON 文件的持久化服务（每个 key 一个文件）
type JSONFileService struct {
	baseDir string
}

func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{baseDir: baseDir}
}

func (s *JSONFileService) NewStore(prefix, id, tag string) Store {
	return &JSONFileStore{
		service: s,
		key:     fmt.Sprintf("%s:%s:%s", prefix, id, tag),
	}
}

// JSONFileStore JSON 文件存储实现
type JSONFileStore struct {
	service *JSONFileService
	key     string
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *JSONFileStore) filePath() string {
	// key 形如 "state:<id>:<tag>"，文件名安全化
	safe := keySanitizer.ReplaceAllString(s.key, "_")
	return filepath.Join(s.service.baseDir, safe+".json")
}

// Save 先写临时文件再 rename，单个 key 的写入是原子的
func (s *JSONFileStore) Save(data interface{}) error {
	log.Debugf("save key=%s", s.key)
	if err := os.MkdirAll(s.service.baseDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	path := s.filePath()
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *JSONFileStore) Load(data interface{}) error {
	log.Debugf("load key=%s", s.key)
	b, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return err
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}

// LoadFields 加载带 persistence tag 的字段；不存在的 key 保持字段原值
func LoadFields(obj interface{}, id string, service Service) error {
	return iterateFieldsByTag(obj, func(tag string, field reflect.StructField, value reflect.Value) error {
		newValueInf := newTypeValueInterface(value.Type())

		store := service.NewStore(statePrefix, id, tag)
		if err := store.Load(&newValueInf); err != nil {
			if errors.Is(err, ErrNotExists) {
				return nil
			}
			return fmt.Errorf("load field %s: %w", field.Name, err)
		}

		newValue := reflect.ValueOf(newValueInf)
		if value.Kind() != reflect.Ptr && newValue.Kind() == reflect.Ptr {
			newValue = newValue.Elem()
		}
		value.Set(newValue)
		return nil
	})
}

// SaveFields 保存所有带 persistence tag 的字段
func SaveFields(obj interface{}, id string, service Service) error {
	return iterateFieldsByTag(obj, func(tag string, field reflect.StructField, value reflect.Value) error {
		if err := service.NewStore(statePrefix, id, tag).Save(value.Interface()); err != nil {
			return fmt.Errorf("save field %s: %w", field.Name, err)
		}
		return nil
	})
}

// SaveField 只保存 tag 对应的单个字段
func SaveField(obj interface{}, id, tag string, service Service) error {
	found := false
	err := iterateFieldsByTag(obj, func(t string, field reflect.StructField, value reflect.Value) error {
		if t != tag {
			return nil
		}
		found = true
		if err := service.NewStore(statePrefix, id, tag).Save(value.Interface()); err != nil {
			return fmt.Errorf("save field %s: %w", field.Name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no field tagged %q", tag)
	}
	return nil
}

// iterateFieldsByTag 遍历结构体（含嵌套结构体）中带 persistence tag 的导出字段
func iterateFieldsByTag(obj interface{}, fn func(tag string, field reflect.StructField, value reflect.Value) error) error {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("object must be a struct or pointer to struct")
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !value.CanSet() {
			continue
		}

		tag := field.Tag.Get(TagName)
		if tag == "" || tag == "-" {
			if value.Kind() == reflect.Struct {
				if err := iterateFieldsByTag(value.Addr().Interface(), fn); err != nil {
					return err
				}
			}
			continue
		}

		// "tag,option"
		name, _, _ := strings.Cut(tag, ",")
		if err := fn(name, field, value); err != nil {
			return err
		}
	}
	return nil
}

func newTypeValueInterface(typ reflect.Type) interface{} {
	if typ.Kind() == reflect.Ptr {
		return reflect.New(typ.Elem()).Interface()
	}
	return reflect.New(typ).Interface()
}
