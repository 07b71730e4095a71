package order

// DefaultMaxTries 强制模式下单次调用最多执行的轮数。
const DefaultMaxTries = 10

// RetryPolicy 控制一次清理调用执行多少轮。
// 非强制模式只跑一轮；强制模式一直跑到没有剩余订单或达到 MaxTries。
type RetryPolicy struct {
	MaxTries int
	Force    bool
}

// Attempts returns the maximum number of passes the policy allows.
func (p RetryPolicy) Attempts() int {
	if !p.Force {
		return 1
	}
	if p.MaxTries <= 0 {
		return DefaultMaxTries
	}
	return p.MaxTries
}

// PassFunc 执行一轮，返回本轮之后仍未处理的订单数。
type PassFunc func(attempt int) (remaining int, err error)

// Run 依次执行 pass，返回实际执行的轮数。pass 返回错误时立即停止。
func (p RetryPolicy) Run(pass PassFunc) (int, error) {
	limit := p.Attempts()
	passes := 0
	for attempt := 1; attempt <= limit; attempt++ {
		remaining, err := pass(attempt)
		passes = attempt
		if err != nil {
			return passes, err
		}
		if remaining == 0 {
			break
		}
	}
	return passes, nil
}
