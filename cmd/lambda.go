package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an API Gateway proxy Lambda",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return exitError("failed to load config", err)
		}
		gin.SetMode(gin.ReleaseMode)

		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return exitError("failed to build application", err)
		}
		defer a.Close()

		lambda.Start(a.handler.Handle)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}
