package policy

// BuiltinSpecs returns the starter rule set written by `planguard init`.
// Each spec compiles cleanly; a unit test keeps that honest.
func BuiltinSpecs() []RuleSpec {
	return []RuleSpec{
		s3VersioningRule(),
		s3EncryptionRule(),
		ec2InstanceTypesRule(),
		rdsBackupRetentionRule(),
		s3BucketNameRule(),
	}
}

// s3VersioningRule requires versioning on every S3 bucket.
func s3VersioningRule() RuleSpec {
	spec := RuleSpec{
		ID:           "s3-versioning-enabled",
		Name:         "S3 buckets must have versioning enabled",
		ResourceType: "aws_s3_bucket",
		Severity:     string(SeverityError),
		Property:     "versioning.0.enabled",
		Message:      "S3 bucket {{resource_name}} must have versioning enabled",
	}
	spec.SetEquals(true)
	return spec
}

// s3EncryptionRule requires server-side encryption with an approved algorithm.
func s3EncryptionRule() RuleSpec {
	return RuleSpec{
		ID:           "s3-encryption-enabled",
		Name:         "S3 buckets must have encryption enabled",
		ResourceType: "aws_s3_bucket",
		Severity:     string(SeverityError),
		Property:     "server_side_encryption_configuration.0.rule.0.apply_server_side_encryption_by_default.0.sse_algorithm",
		In:           []interface{}{"AES256", "aws:kms"},
		Message:      "S3 bucket {{resource_name}} must have server-side encryption enabled",
	}
}

// ec2InstanceTypesRule restricts instances to an approved type list.
func ec2InstanceTypesRule() RuleSpec {
	return RuleSpec{
		ID:           "ec2-allowed-instance-types",
		Name:         "EC2 instances must use approved instance types",
		ResourceType: "aws_instance",
		Severity:     string(SeverityError),
		Property:     "instance_type",
		In:           []interface{}{"t3.micro", "t3.small", "t3.medium", "t3.large"},
		Message:      "EC2 instance {{resource_name}} must use an approved instance type",
	}
}

// rdsBackupRetentionRule asks for at least a week of backups.
func rdsBackupRetentionRule() RuleSpec {
	threshold := 7.0
	return RuleSpec{
		ID:              "rds-backup-retention",
		Name:            "RDS instances should have minimum backup retention",
		ResourceType:    "aws_db_instance",
		Severity:        string(SeverityWarning),
		Property:        "backup_retention_period",
		GreaterThanOrEq: &threshold,
		Message:         "RDS instance {{resource_name}} should have at least 7 days backup retention",
	}
}

// s3BucketNameRule enforces the lowercase bucket naming convention.
func s3BucketNameRule() RuleSpec {
	pattern := "^[a-z0-9][a-z0-9-]*[a-z0-9]$"
	return RuleSpec{
		ID:           "s3-bucket-name-pattern",
		Name:         "S3 bucket names must follow naming convention",
		ResourceType: "aws_s3_bucket",
		Severity:     string(SeverityError),
		Property:     "bucket",
		RegexMatch:   &pattern,
		Message:      "S3 bucket {{resource_name}} must use lowercase alphanumeric characters and hyphens only",
	}
}
