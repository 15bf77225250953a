package domain

import (
	"fmt"
	"math"
)

// Grid 对数价格 x = ln(S/K) 上的有限差分网格。节点 i 对应 x = (Minus+i)*DX。
type Grid struct {
	DX    float64 // 空间步长
	DT    float64 // 名义时间步长（无量纲时间 τ）
	Minus int     // 最左节点编号
	Plus  int     // 最右节点编号
}

// ReasonableDefaults 默认网格：x ∈ [-10, 10]，dx = 0.01，dt = 3e-5
func ReasonableDefaults() Grid {
	return Grid{DX: 0.01, DT: 0.00003, Minus: -1000, Plus: 1000}
}

// Validate 校验网格
func (g Grid) Validate() error {
	if !(g.DX > 0) || !(g.DT > 0) || math.IsInf(g.DX, 0) || math.IsInf(g.DT, 0) {
		return fmt.Errorf("%w: grid steps must be positive (dx=%v, dt=%v)", ErrInvalidParameters, g.DX, g.DT)
	}
	if g.Plus-g.Minus < 2 {
		return fmt.Errorf("%w: grid needs at least 3 nodes (minus=%d, plus=%d)", ErrInvalidParameters, g.Minus, g.Plus)
	}
	return nil
}

// NumX 空间节点数
func (g Grid) NumX() int { return g.Plus - g.Minus + 1 }

// X 第 i 个节点的对数价格
func (g Grid) X(i int) float64 { return float64(g.Minus+i) * g.DX }

// Steps 覆盖 tau 所需的步数，以及落在 tau 上的实际步长
func (g Grid) Steps(tau float64) (int, float64) {
	if tau <= 0 {
		return 0, 0
	}
	n := int(math.Ceil(tau/g.DT - 1e-9))
	if n < 1 {
		n = 1
	}
	return n, tau / float64(n)
}

// Alpha 网格比 dt/dx²
func (g Grid) Alpha(dt float64) float64 { return dt / (g.DX * g.DX) }

// Locate 返回 x 的分数节点编号，超出网格返回 ErrSpotOutsideGrid
func (g Grid) Locate(x float64) (float64, error) {
	pos := x/g.DX - float64(g.Minus)
	if math.IsNaN(pos) || pos < 0 || pos > float64(g.NumX()-1) {
		return 0, fmt.Errorf("%w: x=%.6f not in [%.4f, %.4f]", ErrSpotOutsideGrid, x, g.X(0), g.X(g.NumX()-1))
	}
	return pos, nil
}

// Interpolate 在节点值上做线性插值
func (g Grid) Interpolate(values []float64, x float64) (float64, error) {
	pos, err := g.Locate(x)
	if err != nil {
		return 0, err
	}
	i := int(math.Floor(pos))
	if i >= len(values)-1 {
		return values[len(values)-1], nil
	}
	w := pos - float64(i)
	return values[i]*(1-w) + values[i+1]*w, nil
}
