package validators

import "go.mongodb.org/mongo-driver/bson"

var CampaignValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"user_id", "status", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "objectId"},
			"user_id": bson.M{"bsonType": "string", "minLength": 1},
			"name":    bson.M{"bsonType": "string", "maxLength": 200},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"draft", "pending_payment", "paid", "completed", "cancelled"},
			},
			"paid_at": bson.M{"bsonType": "date"},
		},
	},
}

var CampaignMediaValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"campaign_id",
			"media_id",
			"start_date",
			"end_date",
			"status",
		},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "objectId"},
			"campaign_id": objectIDString,
			"media_id":    objectIDString,
			"start_date":  bson.M{"bsonType": "date"},
			"end_date":    bson.M{"bsonType": "date"},
			"quantity":    bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"price_type":  bson.M{"bsonType": "string"},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "reserved"},
			},
		},
	},
}

var LockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"owner":      bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
		},
	},
}
