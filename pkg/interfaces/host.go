package interfaces

import "github.com/google/uuid"

// ============================================================================
//                              宿主对象系统
// ============================================================================
//
// 宿主（Host）是一个单线程、回调驱动的对象系统：
//   - 对象通过可撤销的 ObjectID 引用，随时可能被销毁
//   - 所有对象状态变更只能发生在宿主线程上
//   - 后台任务只能通过 CallDeferred 把工作投递回宿主线程
//
// go-bridge 只依赖下面这组最小接口，宿主的具体实现由外部提供。
// pkg/lib/hostloop 提供了一个参考实现，供测试和示例程序使用。

// ObjectID 宿主对象的稳定标识
//
// 与直接引用不同，ObjectID 在对象销毁后仍可安全持有，
// 只是无法再解析为存活的对象。
type ObjectID uuid.UUID

// NilObjectID 空标识
var NilObjectID = ObjectID(uuid.Nil)

// String 返回标识的字符串表示
func (id ObjectID) String() string {
	return uuid.UUID(id).String()
}

// NewObjectID 生成新的对象标识
func NewObjectID() ObjectID {
	return ObjectID(uuid.New())
}

// Object 宿主侧对象
type Object interface {
	// ObjectID 返回对象标识
	ObjectID() ObjectID

	// EmitSignal 发出命名信号
	//
	// 只能在宿主线程上调用。
	EmitSignal(signal string, args ...any)
}

// Host 宿主对象系统
type Host interface {
	// Register 注册对象并返回其标识
	Register(obj Object) ObjectID

	// Lookup 将标识解析为存活对象
	//
	// 对象已被 Free 时返回 false。可在任意线程调用。
	Lookup(id ObjectID) (Object, bool)

	// Free 销毁对象，之后 Lookup 将失败
	Free(id ObjectID)

	// CallDeferred 把 fn 放入宿主线程的调度队列
	//
	// 可在任意线程调用，fn 总是在宿主线程上执行。
	// 宿主已停止时返回错误。
	CallDeferred(fn func()) error
}
