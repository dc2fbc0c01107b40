// Package mysql 持久化已上链的购票与领奖交易记录。
// 提供基于本地 JSON 日志的开发实现与基于 MySQL 的生产实现，
// 后者在启动时执行 deploy/migrations 中内嵌的迁移脚本。
package mysql
