package utils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/workzen/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

var departmentNames = []string{"Engineering", "Finance", "Sales", "HR"}
var departments = map[string][]string{
	"Engineering": {"Software Engineer", "QA Engineer", "DevOps Engineer"},
	"Finance":     {"Accountant", "Financial Analyst"},
	"Sales":       {"Account Executive", "Sales Manager"},
	"HR":          {"HR Specialist", "Recruiter"},
}

var roles = []domain.Role{
	domain.RoleEmployee,
	domain.RoleEmployee,
	domain.RoleEmployee,
	domain.RoleHR,
}

var digits = "0123456789"

// Person 是一个随机生成的演示员工
type Person struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Department string
	Position   string
	Role       domain.Role
}

// GenerateRandomChineseName 返回姓和名
func GenerateRandomChineseName() (string, string) {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname, name
}

func GenerateRandomDigits(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}

// GenerateEmailLocalPart 用名字的拼音加上随机数字作为邮箱前缀，例如 wei.wang42
func GenerateEmailLocalPart(firstName, lastName string) string {
	given := strings.Join(pinyin.LazyConvert(firstName, nil), "")
	surname := strings.Join(pinyin.LazyConvert(lastName, nil), "")
	return fmt.Sprintf("%s.%s%s", given, surname, GenerateRandomDigits(rand.Intn(3)+1))
}

func GenerateRandomPerson(emailDomain string) Person {
	surname, name := GenerateRandomChineseName()

	department := departmentNames[rand.Intn(len(departmentNames))]
	positions := departments[department]

	return Person{
		FirstName:  name,
		LastName:   surname,
		Email:      GenerateEmailLocalPart(name, surname) + "@" + emailDomain,
		Phone:      "1" + GenerateRandomDigits(10),
		Department: department,
		Position:   positions[rand.Intn(len(positions))],
		Role:       roles[rand.Intn(len(roles))],
	}
}
