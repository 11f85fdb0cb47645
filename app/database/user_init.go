package database

import (
	"fmt"

	"media-forge/app/config"
	"media-forge/app/logger"
	"media-forge/app/model"
	"media-forge/app/utils"
)

// InitAdminUser 按配置初始化管理员账户，存在时同步用户名和密码
func InitAdminUser(cfg *config.Config, log *logger.Logger) error {
	if cfg.Server.Username == "" || cfg.Server.Password == "" {
		return fmt.Errorf("管理员账户配置不能为空，请在配置文件中设置 username 和 password")
	}

	var admin model.User
	result := DB.Order("id ASC").First(&admin)

	if result.Error == nil {
		// 管理员已存在，按配置同步用户名和密码
		needUpdate := false

		if admin.Username != cfg.Server.Username {
			log.Infof("管理员用户名从 '%s' 更新为 '%s'", admin.Username, cfg.Server.Username)
			admin.Username = cfg.Server.Username
			needUpdate = true
		}

		if !utils.VerifyPassword(cfg.Server.Password, admin.Password) {
			hashed, err := utils.HashPassword(cfg.Server.Password)
			if err != nil {
				return fmt.Errorf("哈希密码失败: %v", err)
			}
			admin.Password = hashed
			needUpdate = true
			log.Infof("管理员 '%s' 密码已更新", cfg.Server.Username)
		}

		if needUpdate {
			if err := DB.Save(&admin).Error; err != nil {
				return fmt.Errorf("更新管理员账户失败: %v", err)
			}
		}
		return nil
	}

	// 不存在管理员用户，创建新的管理员账户
	hashed, err := utils.HashPassword(cfg.Server.Password)
	if err != nil {
		return fmt.Errorf("哈希密码失败: %v", err)
	}

	admin = model.User{
		Username: cfg.Server.Username,
		Password: hashed,
		IsActive: true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		return fmt.Errorf("创建管理员账户失败: %v", err)
	}

	log.Infof("管理员账户 '%s' 创建成功", cfg.Server.Username)
	return nil
}
