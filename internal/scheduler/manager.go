package scheduler

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/mliell/crowdmint/internal/logger"
)

// Job 可调度任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

// NewManager 创建新的任务管理器
func NewManager(jobs ...Job) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Manager{
		scheduler: s,
		jobs:      jobs,
	}, nil
}

// Start 注册全部任务并启动调度器
func (m *Manager) Start() {
	m.RegisterJobs()
	m.scheduler.Start()
	logger.Info("Task manager started with %d jobs", len(m.jobs))
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	for _, job := range m.jobs {
		m.registerJob(job)
	}
}

// registerJob 单例模式注册，上一次未完成时顺延
func (m *Manager) registerJob(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
		return
	}
	logger.Info("Registered job %s", job.GetName())
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
