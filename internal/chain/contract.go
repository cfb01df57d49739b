package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Contract 只读合约包装器，同一 ABI 可绑定到任意地址
type Contract struct {
	caller bind.ContractCaller
	abi    abi.ABI
	name   string
}

// NewContract 创建合约实例；abiPath 为空时使用内置 ABI
func NewContract(caller bind.ContractCaller, name, abiPath, builtin string) (*Contract, error) {
	parsedABI, err := loadABI(abiPath, builtin)
	if err != nil {
		return nil, fmt.Errorf("failed to load ABI for %s: %w", name, err)
	}

	return &Contract{
		caller: caller,
		abi:    parsedABI,
		name:   name,
	}, nil
}

// loadABI 加载 ABI，兼容完整编译输出与纯 ABI 数组
func loadABI(abiPath, builtin string) (abi.ABI, error) {
	if abiPath == "" {
		return abi.JSON(strings.NewReader(builtin))
	}

	abiData, err := os.ReadFile(abiPath)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read %s: %w", abiPath, err)
	}

	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(abiData, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		return abi.JSON(bytes.NewReader(compiledOutput.ABI))
	}
	return abi.JSON(bytes.NewReader(abiData))
}

// GetABI 获取合约ABI
func (c *Contract) GetABI() abi.ABI {
	return c.abi
}

// GetName 获取合约名称
func (c *Contract) GetName() string {
	return c.name
}

// Call 调用 view 方法，返回解包后的输出
func (c *Contract) Call(ctx context.Context, at common.Address, method string, params ...interface{}) ([]interface{}, error) {
	bound := bind.NewBoundContract(at, c.abi, c.caller, nil, nil)

	var out []interface{}
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("call %s.%s at %s: %w", c.name, method, at.Hex(), err)
	}
	if len(out) != len(c.abi.Methods[method].Outputs) {
		return nil, fmt.Errorf("call %s.%s at %s: expected %d outputs, got %d",
			c.name, method, at.Hex(), len(c.abi.Methods[method].Outputs), len(out))
	}
	return out, nil
}
