package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// USDCDecimals 链上 USDC 金额的定点精度
const USDCDecimals = 6

// USDC 定点金额，在系统边界处由链上整数一次性转换
type USDC struct {
	d decimal.Decimal
}

// NewUSDC 将链上最小单位整数转换为 USDC 金额，nil 视为 0
func NewUSDC(raw *big.Int) USDC {
	if raw == nil {
		return USDC{d: decimal.Zero}
	}
	return USDC{d: decimal.NewFromBigInt(raw, -USDCDecimals)}
}

// ParseUSDC 解析十进制字符串
func ParseUSDC(s string) (USDC, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return USDC{}, err
	}
	return USDC{d: d}, nil
}

// Raw 返回链上最小单位整数
func (u USDC) Raw() *big.Int {
	return u.d.Shift(USDCDecimals).BigInt()
}

// Cmp 比较两个金额
func (u USDC) Cmp(other USDC) int {
	return u.d.Cmp(other.d)
}

// IsZero 是否为 0
func (u USDC) IsZero() bool {
	return u.d.IsZero()
}

func (u USDC) Float64() float64 {
	f, _ := u.d.Float64()
	return f
}

func (u USDC) String() string {
	return u.d.String()
}

// MarshalJSON 以 JSON 数字输出，与前端约定一致
func (u USDC) MarshalJSON() ([]byte, error) {
	return []byte(u.d.String()), nil
}

// UnmarshalJSON 同时接受数字与字符串
func (u *USDC) UnmarshalJSON(data []byte) error {
	return u.d.UnmarshalJSON(data)
}
