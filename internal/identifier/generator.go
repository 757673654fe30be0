package identifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	nameLength        = 2
	serialDigits      = 4
	maxSerial         = 9999
	maxCodeSuffix     = 9
	companyKeyPrefix  = "company_code:"
	employeeKeyPrefix = "employee_id:"
)

var ErrExhausted = errors.New("identifier space exhausted")

type Store interface {
	CompanyCodeExists(ctx context.Context, code string) (bool, error)
	EmployeeIDExists(ctx context.Context, employeeID string) (bool, error)
	CountEmployeeIDsWithPrefix(ctx context.Context, companyID string, prefix string) (int, error)
}

// Reserver 在写入数据库前占用一个候选标识符，多个实例并发注册时不会拿到同一个序号
type Reserver interface {
	Reserve(ctx context.Context, key string) (bool, error)
}

type nopReserver struct{}

func (nopReserver) Reserve(context.Context, string) (bool, error) { return true, nil }

type Generator struct {
	store    Store
	reserver Reserver
	now      func() time.Time
}

func NewGenerator(store Store, reserver Reserver) *Generator {
	if reserver == nil {
		reserver = nopReserver{}
	}
	return &Generator{
		store:    store,
		reserver: reserver,
		now:      time.Now,
	}
}

// BaseCompanyCode 由公司名生成两位大写缩写：多个单词取前两个单词的首字母，单个单词取前两个字母
func BaseCompanyCode(companyName string) string {
	words := make([]string, 0)
	for _, w := range strings.Fields(companyName) {
		if r := romanize(w); r != "" {
			words = append(words, r)
		}
	}

	switch len(words) {
	case 0:
		return strings.Repeat("X", nameLength)
	case 1:
		return prefix(words[0], nameLength)
	default:
		return words[0][:1] + words[1][:1]
	}
}

// FallbackCompanyCode 在常规缩写都被占用时使用：公司名前两个字母加当前毫秒时间戳的后四位
func (g *Generator) FallbackCompanyCode(companyName string) string {
	ms := strconv.FormatInt(g.now().UnixMilli(), 10)
	return prefix(companyName, nameLength) + ms[len(ms)-serialDigits:]
}

func (g *Generator) GenerateCompanyCode(ctx context.Context, companyName string) (string, error) {
	base := BaseCompanyCode(companyName)

	candidates := []string{base}
	for i := 2; i <= maxCodeSuffix; i++ {
		candidates = append(candidates, base+strconv.Itoa(i))
	}

	for _, code := range candidates {
		ok, err := g.claim(ctx, companyKeyPrefix+code, func() (bool, error) {
			return g.store.CompanyCodeExists(ctx, code)
		})
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}

	return g.FallbackCompanyCode(companyName), nil
}

// EmployeeIDPrefix 返回 公司代码 + 名前两位 + 姓前两位 + 年份
func EmployeeIDPrefix(companyCode, firstName, lastName string, referenceDate time.Time) string {
	return fmt.Sprintf("%s%s%s%04d", strings.ToUpper(companyCode), prefix(firstName, nameLength), prefix(lastName, nameLength), referenceDate.Year())
}

// GenerateEmployeeID 生成全局唯一的工号（也就是登录 ID）。
// 序号从同前缀已有数量 + 1 开始，跳过所有已存在或已被其他请求占用的候选值。
func (g *Generator) GenerateEmployeeID(ctx context.Context, companyCode, firstName, lastName string, referenceDate time.Time, companyID string) (string, error) {
	p := EmployeeIDPrefix(companyCode, firstName, lastName, referenceDate)

	count, err := g.store.CountEmployeeIDsWithPrefix(ctx, companyID, p)
	if err != nil {
		return "", fmt.Errorf("count employee ids: %w", err)
	}

	for serial := count + 1; serial <= maxSerial; serial++ {
		candidate := fmt.Sprintf("%s%0*d", p, serialDigits, serial)
		ok, err := g.claim(ctx, employeeKeyPrefix+candidate, func() (bool, error) {
			return g.store.EmployeeIDExists(ctx, candidate)
		})
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("employee id prefix %s: %w", p, ErrExhausted)
}

// claim 先查存储再占用，两步都通过才算拿到这个候选值
func (g *Generator) claim(ctx context.Context, key string, exists func() (bool, error)) (bool, error) {
	taken, err := exists()
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	if taken {
		return false, nil
	}

	reserved, err := g.reserver.Reserve(ctx, key)
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", key, err)
	}
	return reserved, nil
}
