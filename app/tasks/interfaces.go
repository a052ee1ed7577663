package tasks

// TaskSchedulerInterface is the surface main and the API server use to
// drive background processing: start and stop the worker pool and push
// ad-hoc tasks onto the queue.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
